// Package tracker provides head pose sources: a UDP receiver for the
// 48-byte pose datagram, a line-oriented serial device, a pcap replay of
// captured datagrams and a synthetic generator for bench testing.
//
// Every tracker stores the latest sample under a mutex; Data never blocks
// on I/O.
package tracker
