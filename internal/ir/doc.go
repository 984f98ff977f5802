// Package ir provides the serializable data types shared by every ctorder package.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Declaration order is carried by slices, never by maps
//   - Plans are pure data: a Plan never depends on initializer-list order
//   - Events are ordered by a logical seq, never by wall-clock time
//   - All JSON tags use snake_case
package ir
