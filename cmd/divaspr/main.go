// Command divaspr extracts sprites from FARC archives and sprite set blobs.
package main

func main() {
	Execute()
}
