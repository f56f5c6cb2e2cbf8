// Package guard provides the business boundary for ShadowGuard's PHI
// inspection pipeline. It defines the Service (synchronous scan→score→
// decide→redact plus async finalize), the Store interface (audit
// persistence), the Broadcaster (live observer fan-out), the Aggregator
// (running statistics), and the domain models.
package guard
