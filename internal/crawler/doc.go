// Package crawler defines the types shared by the fetch-and-parse pipeline:
// entry IDs, fetched blocks, parsing modes and target sets, plus the
// interfaces the worker, stores and publishers are written against.
package crawler
