// Command sysdb-cli is a readline-style REPL that talks to a running
// sysdbd's frontend query endpoint over plain HTTP, standing in for the
// "CLI REPL with readline" external collaborator named for query-language
// clients: type a filter expression (or "host <name>" for one host,
// "hosts" for every host) and see the matching hosts rendered back as
// JSON.
package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/c-bata/go-prompt"
)

var baseURL string

func main() {
	addr := flag.String("addr", "http://localhost:8090", "sysdbd frontend base URL")
	flag.Parse()
	baseURL = strings.TrimRight(*addr, "/")

	fmt.Printf("sysdb-cli connected to %s\n", baseURL)
	fmt.Println(`type a filter expression (e.g. name = "web1") or "hosts" to list every host, "exit" to quit`)

	p := prompt.New(
		executor,
		completer,
		prompt.OptionPrefix("sysdb> "),
		prompt.OptionTitle("sysdb-cli"),
	)
	p.Run()
}

func executor(line string) {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return
	case line == "exit" || line == "quit":
		os.Exit(0)
	case line == "hosts":
		fetch("/query/hosts", nil)
	case strings.HasPrefix(line, "host "):
		name := strings.TrimSpace(strings.TrimPrefix(line, "host "))
		fetch("/query/hosts/"+url.PathEscape(name), nil)
	default:
		fetch("/query/hosts", url.Values{"filter": {line}})
	}
}

func fetch(path string, query url.Values) {
	u := baseURL + path
	if query != nil {
		u += "?" + query.Encode()
	}

	resp, err := http.Get(u)
	if err != nil {
		fmt.Fprintf(os.Stderr, "request error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading response: %v\n", err)
		return
	}

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "server returned %s: %s\n", resp.Status, body)
		return
	}

	fmt.Println(string(body))
}

var completions = []prompt.Suggest{
	{Text: "hosts", Description: "list every host"},
	{Text: "host", Description: "host <name> - show one host"},
	{Text: "name =", Description: "filter by host name"},
	{Text: "backend =", Description: "filter by backend"},
	{Text: "attr.", Description: "attr.<name> = <value> - filter by attribute"},
	{Text: "and", Description: "combine two clauses"},
	{Text: "or", Description: "combine two clauses"},
	{Text: "not", Description: "negate a clause"},
	{Text: "exit", Description: "quit sysdb-cli"},
}

func completer(d prompt.Document) []prompt.Suggest {
	return prompt.FilterHasPrefix(completions, d.GetWordBeforeCursor(), true)
}
