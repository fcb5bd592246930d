package contracts

import "github.com/julienschmidt/httprouter"

// Routes is implemented by every HTTP handler a service mounts on its router.
type Routes interface {
	RegisterRoutes(router *httprouter.Router)
}
