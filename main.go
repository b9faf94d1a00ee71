package main

import "github.com/wundergraph/graphiql-fetcher/cmd"

func main() {
	cmd.Execute()
}
