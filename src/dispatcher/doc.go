// Package dispatcher routes locally delivered messages to their consumers.
//
// Components register a Sink per message type for the requests (and
// unsolicited answers) they handle. Requests sent through Send with a Sink are
// remembered by transaction id; the first matching answer goes to that Sink
// and the entry is forgotten. Tick retransmits unanswered requests and
// eventually reports them to TimeoutSinks.
package dispatcher
