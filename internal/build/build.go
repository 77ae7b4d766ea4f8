// Package build provides build information that is linked into the application. Other
// packages within this project can use this information in logs etc..
package build

var (
	// Version is the build version of the binary (e.g. v0.1.0 or a commit SHA).
	Version = "dev"

	// Commit is the short SHA of the commit the binary was built from.
	Commit = "none"

	// Date is the date the binary was built.
	Date = "unknown"

	// ProjectName is used as the prometheus namespace and the otel service name.
	ProjectName = "tagstore"
)

// MinimumSupportedDatastoreSchemaRevision is the lowest goose revision a relational
// datastore must carry before the tag engine will use it.
const MinimumSupportedDatastoreSchemaRevision int64 = 1
