// Package depgraph walks an installed package tree and determines the minimal closure of package directories
// required by a program at run time.
//
// The walk starts from a set of "seed" package names, normally the dependencies declared by the project's own
// manifest plus any extra packages requested by the user. Each name is resolved against the tree the same way
// Node.js resolves a require() call: the nearest node_modules directory containing the package wins.
//
// The term "included" below means the package directory is part of the closure.
//
// The rules applied while walking are:
//
//  1. A name in the exclusion set is never resolved, wherever it is referenced.
//  2. A name that cannot be resolved is reported as missing and skipped. This is not an error.
//  3. Each package directory is expanded at most once, so dependency cycles terminate.
//  4. A deployment-time package (one whose manifest has a "pulumi" section) is not included. Its declared
//     "runtimeDependencies" are walked instead, resolved from the deployment-time package's own directory.
//  5. A package whose name starts with a legacy prefix (default "@pulumi") and that has no "pulumi" section is
//     skipped entirely. This rule only exists for packages that predate the "pulumi" section and can be
//     disabled with an empty prefix list.
//  6. Any other package is included, and its "dependencies" are walked from its own directory.
//  7. "devDependencies" and "peerDependencies" are never walked.
package depgraph
