// Package feedback records human corrections against extractions and turns
// ratings into confidence adjustments the next extraction run inherits.
package feedback
