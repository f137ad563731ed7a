// Package vision converts a reference image into a text build request
// using a vision-capable model.
package vision
