// Package model provides the geometric primitives shared by the page
// model, the renderer and the transformation engine.
//
//   - [Point] - 2D point in user space
//   - [Rect] - axis-aligned rectangle given by its corners, as PDF boxes are
//   - [Matrix] - 2D affine transformation matrix [a b c d e f]
//
// Matrices follow the PDF row-vector convention: m.Multiply(n) applies m
// first and then n, so a "cm" operator updates the CTM with
// cm.Multiply(ctm).
package model
