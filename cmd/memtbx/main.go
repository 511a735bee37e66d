// Command memtbx plans and exercises memory toolbox configurations.
package main

func main() {
	execute()
}
