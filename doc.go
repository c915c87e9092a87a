// Package ion is the observability entry point for services instrumented with
// this module.
//
// It unifies structured logging (zap), distributed tracing and metrics
// (OpenTelemetry) behind a context-first API, and owns the providers that the
// instrumentation packages record into:
//
//   - instrumenter: the generic request/response pipeline
//   - semconv/httpconv, semconv/rpcconv, semconv/messagingconv: attribute
//     extractors and duration metrics following the semantic conventions
//   - middleware/ionhttp, middleware/iongrpc, middleware/ionaws: adapters for
//     net/http, gRPC and the AWS SDK (including SQS)
//
// # Guarantees
//
//   - Process safety: ion never terminates the process. Critical logs at fatal
//     level and returns.
//   - Failure isolation: instrumentation failures are recovered and logged;
//     they never reach the instrumented call.
//   - Lifecycle: Shutdown(ctx) flushes metrics, spans and logs on a
//     best-effort basis.
package ion
