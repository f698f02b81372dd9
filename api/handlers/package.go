// Package handlers contains the HTTP handlers of the simulator API. Every
// handler touching simulation state runs inside Simulation.Exec.
package handlers
