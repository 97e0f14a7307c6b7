/*
Package markov generates discrete-time Markov chain trajectories.

A Chain owns a row-stochastic TransitionMatrix and a cursor, and produces a
lazy, infinite and restartable sequence of state indices by repeatedly
sampling the next state from the row of the current one. Randomness comes
from a RandomSource with two independently seedable streams: the
construction stream (random matrices and the initial pick at build time)
and the process stream (transitions during a run). Fixing the process seed
replays a trajectory exactly; fixing the construction seed reproduces a
randomly generated matrix and its initial state.

Reset comes in two modes. ResetFull reseeds the process stream and
re-resolves the initial state, so repeated full resets replay the same run.
ResetPreserve keeps the current state, which lets a caller stage a new
matrix with SetMatrix and graft a new process onto the tail of the old one.

Around the core the package offers delimited/JSON/YAML matrix parsing, a
Collector that records the states emitted by several chains while sharing
identical stretches, and a SQLite-backed Store for matrices and run reports.
*/
package markov
