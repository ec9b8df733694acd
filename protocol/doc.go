// Package protocol
// Author: momentics <momentics@gmail.com>
//
// Reference collaborators for the reactor server: a newline-delimited text
// codec and an echo protocol that ends the session on "BYE".
package protocol
