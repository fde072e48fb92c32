// Package actionchain provides an in-process engine that drives actions through
// a fixed stage lifecycle.
//
// Every action walks PreProcessing, Processing and PostProcessing, or takes the
// Cancelled path when it was marked as cancelled before Processing began. Any
// stage may chain further actions; a chained action runs to completion before
// the stage that chained it is considered finished, and may itself chain more.
//
// Core components include:
//   - Action: per-stage handlers, pending chains, own tags and data
//   - ChainContext: tags and data shared by every action of one processing run
//   - Processor: a FIFO queue of roots and an explicit execution stack
//   - TypedAction: an action mapping parameters to a typed Result
//
// The processor never recurses into chained actions, so chains of any depth
// are safe. Lifecycle events can be observed through subscriptions or an
// Observer; the metrics, tracing and journal packages provide ready-made ones.
package actionchain
