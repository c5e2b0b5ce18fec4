// Package deploy decides whether a deploy must run at all.
//
// The decision compares the content hashes of the locally packaged artifacts
// with the objects of the most recent deployment folder in the deployment
// bucket, then checks that every function using a matched artifact was
// updated after that artifact was uploaded. Any ambiguity resolves to
// PROCEED; only a clean match of content and timestamps yields SKIP.
//
// The decision is returned as a value. Nothing here keeps state between
// calls, so concurrent or repeated evaluations recompute from what the
// provider reports.
package deploy
