/*
Package guard holds the checks the CMD and GOODNESS nodes run on a request.

  - SanitizeRequest bounds and cleans the text, command and string args of a request.
  - Scanner classifies a request as blocked, threat_detected, anomaly_detected or clear.
  - PolicyEvaluator is the default ports.GovernanceEvaluator, a chain of named policies.
*/
package guard
