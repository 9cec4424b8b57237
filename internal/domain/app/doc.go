// Package app manages the environment hierarchy and the applications
// running in it.
//
// A Tree owns every Environment. Environments refer to their parent and
// children by arena handle, so a destroyed environment can never be reached
// through a stale reference. Each Environment owns the Controllers of the
// applications it launched; a Controller moves from Active to Detached to
// Terminated and its teardown runs exactly once no matter which trigger
// fires first: an explicit kill, the controlling channel closing, the
// process exiting, or the environment being destroyed.
package app
