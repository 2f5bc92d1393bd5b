/*

Process of optimization

YAML module (irfile) ->
	load ->
Intermediate Representation (ir) ->
	loops, branch-prob, block-freq (pass.Analyses) ->
Frequent and infrequent paths of each loop (fplicm.Partition) ->
	almost invariant loads (fplicm.FindCandidates) ->
Loads hoisted into the preheader (fplicm.Hoist) ->
	print ->
IR Text

*/
package compiler
