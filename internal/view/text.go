package view

// User-facing copy.
const (
	TextAppName        = "Lucidly"
	TextTagline        = "Track your reading with intention."
	TextSignIn         = "Sign in with Google"
	TextSignOut        = "Sign out"
	TextLoading        = "Loading..."
	TextLoadingBooks   = "Loading books..."
	TextNoBooks        = "No books yet. Add one to get started."
	TextShelfEmpty     = "Your shelf is waiting. Finish a book to see it here."
	TextReadingEmpty   = "What's next? Add a book to begin."
	TextClickToEdit    = "Click to edit"
	TextIntentionLabel = "Why I'm reading this"
	TextErrorPrefix    = "Something went wrong: "
)

// EmptyFilterText is shown when a filter matches nothing.
func EmptyFilterText(filter string) string {
	if filter == "" || filter == "all" {
		return TextNoBooks
	}
	return "No " + filter + " books."
}

// DeletePrompt is the confirmation shown once delete is armed.
func DeletePrompt(title string) string {
	return "Delete " + title + "? This can't be undone."
}
