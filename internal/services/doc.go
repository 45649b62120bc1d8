// Package services implements HTTP clients for the upstream metadata providers.
//
// # Providers
//
//   - [SpotifyService] : streaming catalog (new releases, top tracks, featured collections)
//   - [MusicBrainzService] : community metadata database (release groups, recordings)
//   - [CoverArtService] : cover art archive (front cover lookup)
//
// Each client converts provider JSON into the raw shapes in the models package
// ([models.RawReleaseGroup], [models.RawTrackItem]). Nothing is trusted: absent fields
// stay empty and are dealt with by the transform package.
//
// # Credentials
//
// [TokenCache] performs the client-credentials exchange through [clientcredentials.Config]
// and caches the bearer token until 60 seconds before it expires. Callers that arrive
// while a refresh is running wait on the same exchange ([singleflight.Group]).
// A 401 from Spotify invalidates the cache so the retry picks up a fresh token.
//
// # Retries
//
// All requests go through a shared requester that retries transport errors, 429 and
// 5xx responses with exponential backoff ([backoff.ExponentialBackOff]) bounded by
// [RetryPolicy]. Other 4xx responses fail immediately. A request that still fails is
// returned as a [shared.FetchError]; a 404 unwraps to [shared.ErrNotFound].
//
// MusicBrainz requests are additionally paced with a [rate.Limiter] and carry the
// configured User-Agent.
package services
