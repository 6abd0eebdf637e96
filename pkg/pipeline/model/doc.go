// Package model provides the data structures shared by the pipeline package and its
// extensions. It defines the description of a node handed to pipeline options and the
// hook interface that measure and drawer implement.
package model
