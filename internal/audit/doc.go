// Package audit implements async event dispatching for security-relevant
// operations.
//
// The package owns event buffering and sink delivery only. Which events get
// emitted is decided by the Engine; this package never filters on business
// logic and never imports a sibling package.
package audit
