/*
Package trinity implements the Trinity Score: a weighted sum of five pillar
scores (Truth, Goodness, Beauty, Serenity, Eternity), each clamped to [0,1].

The weights are the single source of truth for the whole system and must sum
to 1.0; ValidateWeights is the check, exercised by tests rather than at runtime.
*/
package trinity
