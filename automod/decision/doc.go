// Decision-service client and reply normalization for borderline moderation cases, with a single-decision fallback over a completion provider.
package decision
