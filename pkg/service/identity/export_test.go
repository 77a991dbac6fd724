package identity

var WithClock = withClock
