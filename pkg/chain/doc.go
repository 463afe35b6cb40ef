/*
Package chain implements a character-level order-N Markov chain text
generator: it learns, one sample at a time, how often each character follows
the last N characters, and samples new strings from those learned
frequencies.

A Model is trained with Train and queried with Generate and friends. Training
is single-writer; generation is read-only and safe to run concurrently once
training is done. A reserved terminator character, chosen at construction and
forbidden in training input, conceptually ends every sample and is the sole
stopping condition during generation.
*/
package chain
