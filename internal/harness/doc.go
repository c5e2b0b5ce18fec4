// Package harness runs deploy scenarios against an in-memory cloud.
//
// A scenario describes a service, its artifacts and the resources that
// exist before the first step, then a sequence of deploys, checks and log
// subscription plans. Each step runs the real pipeline against
// testutil.Cloud with a fake clock and an in-memory ledger, so the skip
// decision, the filter reconciliation and the stack update are the ones a
// real deploy would make.
//
// # Scenario Format
//
//	name: unchanged_redeploy_skips
//	description: "A second deploy of the same code is skipped"
//	service:
//	  service: orders
//	  provider: { stage: dev, region: us-east-1, runtime: nodejs20.x }
//	  package: { artifact: .serverless/orders.zip }
//	  functions:
//	    hello: { handler: handler.hello }
//	artifacts:
//	  .serverless/orders.zip: "v1"
//	setup:
//	  filters:
//	    - { log_group: /aws/lambda/source, name: audit }
//	steps:
//	  - op: deploy
//	  - op: deploy
//	    advance: 1m
//	    expect: { skip: true, reason: unchanged }
//	assertions:
//	  - type: ledger_decisions
//	    decisions: [proceed, skip]
//
// The service document is validated by the config package exactly like a
// service.yml. A step may replace the service or change artifacts; the
// change stays in effect for later steps.
//
// # Assertion Types
//
//   - filter_count: number of subscription filters on a log group
//   - filter_present: a filter with the given name is on a log group
//   - filter_absent: no filter with the given name is on a log group
//   - deploy_folders: number of deployment folders in the stack's bucket
//   - ledger_decisions: the decisions recorded in the ledger, oldest first
//
// # Golden Traces
//
// RunWithGolden compares the per-step trace with testdata/golden. The trace
// holds decisions, error codes, upload counts and deleted filters; it never
// holds hashes or deploy ids. Regenerate with:
//
//	go test ./internal/harness -update
package harness
