// Package http implements the admin REST API over the environment tree.
//
// Routes:
//   - GET    /health                         liveness
//   - GET    /packages                       search path catalog
//   - GET    /environments                   every live environment
//   - GET    /environments/:id               one environment
//   - POST   /environments/:id/children      nest an environment
//   - POST   /environments/:id/applications  launch a URL
//   - DELETE /environments/:id               destroy a subtree
//   - GET    /controllers                    running controllers (?state=)
//   - GET    /controllers/:id                one controller
//   - POST   /controllers/:id/detach         detach a controller
//   - DELETE /controllers/:id                kill an application
//
// Environments are addressed by handle ("index.generation"); a handle from
// a destroyed environment never resolves again.
package http
