package main

import (
	"fmt"
	"os"
)

// Version information
const (
	Version = "0.1.0"
	Name    = "zmesh-echo"
)

func main() {
	fmt.Printf("%s v%s\n", Name, Version)
	fmt.Println("ZMesh: symmetric in-process messaging over ZeroMQ")
	fmt.Println("Status: Development")
	os.Exit(0)
}
