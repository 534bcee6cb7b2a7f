/*
Package gatewayip keeps a Cloudflare Zero Trust gateway location pointed at the
current address of a dynamic DNS hostname.

Usage will always start with [gatewayip.New],
which takes the hostname to follow and a [Lookup] describing which gateway location to update.
A location can be found by its identifier ([ByID]) or by its display name ([ByName]).
A [LocationStore] implementation must be registered, usually with [UsingCloudflare].
Additional client configuration options are listed in the docs for New.

Each call to [Client.Reconcile] performs at most one update and sends at most one notification.
Retrying is left to whatever triggers the next call, such as [RunDaemon] or [Handler].
*/
package gatewayip
