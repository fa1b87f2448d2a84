// Package memstore holds in-process implementations of every store port.
// They back STORE_DRIVER=memory and the tests. Each conditional update is
// done under one mutex, which gives the same atomicity the SQL stores get
// from single-statement updates.
package memstore
