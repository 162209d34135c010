// Command signscribe is the SignScribe command line client: it runs the
// live translator against a prediction endpoint, manages document store
// backups, browses the lesson catalogue and administers accounts.
package main
