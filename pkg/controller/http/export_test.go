package http

// VerifySlackSignature is exported for testing
var VerifySlackSignature = verifySlackSignature

// ToInteraction is exported for testing
var ToInteraction = toInteraction
