// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package tcp provides a TCP connector for writer sources: a non-blocking
// connect watched through the source's auxiliary-handle registration, whose
// socket becomes the source's endpoint once established.
package tcp
