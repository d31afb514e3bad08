package main

import "github.com/FIAP-Grupo-11SOAT/download-lambda/internal/cli"

func main() {
	cli.Execute()
}
