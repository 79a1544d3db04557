/*
Package session coordinates access to traces.

A trace id may be submitted more than once (retries, replays). The Manager makes
sure work on one trace id is serialized, within the process through a
reference-counted mutex per id and across replicas through an optional
ports.DistributedLocker.
*/
package session
