// Package protocol owns the esub wire contract.
//
// Ownership boundary:
// - publish envelope encode/decode
// - acknowledgement frame constant
// - endpoint URL construction for sub/rep/psub/prep/info
package protocol
