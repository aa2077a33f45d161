package main

// extractHTMLFlag pulls a "--html <file>" pair out of args (in any
// position), returning the file path (empty if absent) and the
// remaining positional arguments.
func extractHTMLFlag(args []string) (string, []string) {
	var htmlOut string
	var positional []string

	for i := 0; i < len(args); i++ {
		if args[i] == "--html" && i+1 < len(args) {
			htmlOut = args[i+1]
			i++
			continue
		}
		positional = append(positional, args[i])
	}

	return htmlOut, positional
}
