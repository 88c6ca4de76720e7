// Package notify provides selfauth.Notifier implementations: [LogNotifier]
// for development, [HTTPMailer] for a Resend-style JSON mail API, and
// [Async], which moves delivery off the request path.
//
// Raw tokens are only ever written into the outgoing message body. None of
// these types log them.
package notify
