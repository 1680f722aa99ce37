// Package extract turns one page of a showtimes listing into theatre and movie
// records.
//
// Malformed individual fields never fail extraction: they degrade to warnings
// on the smallest enclosing record. A theatre block without its description or
// showtimes section is dropped and reported in Page.Warnings.
package extract
