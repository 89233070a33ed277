// Command memctl drives the memkit allocator stack: it runs workloads,
// checks invariants under random traffic and serves live statistics.
package main

func main() {
	execute()
}
