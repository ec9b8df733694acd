// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics for the reactor server, exported through Prometheus.
package control
