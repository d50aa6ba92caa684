/*
Package builder is responsible for the architectural construction of a
running pipeline. It acts as the bridge between the static configuration
model (defined in the 'config' package) and the live phase processes
(the 'phase' package).

The primary artifact produced by this package is a started *Pipeline.

Pipeline construction is a multi-phase process:

 1. Stage ordering: stages are visited downstream-first, so every process
    holds live references to its next-stage partitions at start time.

 2. Partition start: for each stage, one phase process per partition is
    started with its callback instance (from the registry), behavior flags,
    routing mode (direct for a single downstream partition, round-robin
    fan-out for several), flow reference, and idle timeout.

 3. Convergence handshake: for each converging stage the builder designates
    partition 0 as the leader and sends every partition the
    (leader, partners) pair, taking the orchestrator role of the protocol.

Upon successful completion, the builder hands back a *Pipeline that accepts
input items, distributes them round-robin across the entry stage's
partitions, and reports completion through the flow coordinator.
*/
package builder
