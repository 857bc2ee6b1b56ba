/*
Package metrics provides Prometheus metric collection for generation
jobs: submissions, terminal states, job lifetimes, poll ticks, and
asset upload/download counts.

The Collector registers its vectors through promauto on the registerer
it is given, so tests can use an isolated registry. All metrics share
one namespace and are grouped by provider and task kind.

This package is internal and should not be imported by external
projects.
*/
package metrics
