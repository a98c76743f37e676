// Package service exposes the state of a node over HTTP.
//
//  /stats     a JSON map of counters and the membership state
//  /topology  the finger table and neighbor lists, node ids in hex
//  /metrics   the prometheus metrics of the transporter and forwarding layer
package service
