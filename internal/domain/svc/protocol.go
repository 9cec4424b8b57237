package svc

// Wire operations. Provider sessions carry only OpConnect; directory
// sessions carry OpOpen and OpList.
const (
	OpConnect = "connect"
	OpOpen    = "open"
	OpList    = "list"
)

// Directory reply statuses
const (
	StatusOK         = "ok"
	StatusNotFound   = "not_found"
	StatusBadRequest = "bad_request"
)

// Environment handed to launched applications.
const (
	// ServicesFDEnv names the variable holding the services descriptor number.
	ServicesFDEnv = "APPMGR_SERVICES_FD"
	// ServicesFD is the descriptor number used by the default process creator.
	ServicesFD = 3
)

// request is a single frame sent by a client. Name is raw bytes so that
// names survive the JSON body unchanged.
type request struct {
	Op   string `json:"op"`
	Name []byte `json:"name,omitempty"`
}

// reply answers a directory request
type reply struct {
	Status string   `json:"status"`
	Names  [][]byte `json:"names,omitempty"`
}
