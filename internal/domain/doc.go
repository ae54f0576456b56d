// Package domain turns bike-share station availability readings into daily
// availability profiles and groups stations with similar profiles.
//
// # Data Source
//
// Readings come from the station status feed of a bike-share system, archived
// as (station_id, ts, nb_bikes) rows by an upstream collector. Timestamps are
// irregular: feeds are polled every one to ten minutes and stations drop out
// of the feed while they are offline.
//
// # Profile
//
// [BuildProfile] computes the profile matrix in six steps:
//
//	1. inactive filter   stations whose nb_bikes never exceeds 0 are dropped
//	2. resample          per station, 5-minute buckets from midnight of the
//	                     first reading's day, bucket mean, backward fill
//	3. pivot             bucket time x station
//	4. weekday filter    Saturday and Sunday buckets are discarded
//	5. hour aggregation  mean per hour of day (hours nobody covers are absent)
//	6. normalization     each column divided by its maximum
//
// Every column of the result peaks at exactly 1.0 and lies in [0, 1]. A
// station that is active only on weekends has no weekday coverage and is
// reported in [Profile.Dropped] instead of producing a column of missing
// values. When a station misses an hour another station covers, the cell
// takes the station's next covered hour, wrapping past midnight.
//
// # Clustering
//
// [ComputeClusters] runs k-means with Euclidean distance over the transposed
// profile (one 24-dimensional vector per station). Initialization is
// k-means++ driven by a seeded PCG generator; the best of several
// initializations by inertia is kept, so identical input and options yield
// identical labels and centroids. Label numbers carry no ordering.
//
// # Errors
//
// All failures wrap one of [ErrEmptyProfile], [ErrInvalidClusterCount] or
// [ErrMalformedInput] and are meant to be tested with errors.Is. The package
// never logs and never retries.
package domain
