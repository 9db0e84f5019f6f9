// Command scribe-admin is a maintenance CLI for the Document Lifecycle
// Engine: it registers projects, inspects log/rotation status, forces log
// rotation, and drains the mutation audit mirror's recovery queue. It is
// not the transport/tool surface spec.md places out of scope in §1 — it
// talks to the engine in-process, the same way an adapter would, for
// operational tasks an adapter wouldn't expose (reconcile, force-rotate).
package main

import (
	"fmt"
	"os"

	"github.com/scribehq/dle/cmd/scribe-admin/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
