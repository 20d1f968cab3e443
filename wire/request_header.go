package wire

// QueryParts holds the optional components produced by splitting a request
// target (see package urlinfo). Every field is optional; an empty string
// and "not present" are distinguished by the companion Has field.
type QueryParts struct {
	Scheme   string
	Host     string
	Port     string
	Path     string
	Query    string
	Fragment string
	UserInfo string

	HasScheme   bool
	HasHost     bool
	HasPort     bool
	HasPath     bool
	HasQuery    bool
	HasFragment bool
	HasUserInfo bool
}

// RequestHeader is the parsed request-line plus headers of one HTTP
// request.
type RequestHeader struct {
	Method  string
	URI     string
	Major   int
	Minor   int
	Query   QueryParts
	Headers Fields
}

// ProtoAtLeast reports whether the request's declared version is >= major.minor.
func (r *RequestHeader) ProtoAtLeast(major, minor int) bool {
	return r.Major > major || (r.Major == major && r.Minor >= minor)
}
