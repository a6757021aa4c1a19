package builtins

import (
	"github.com/cryguy/hostbridge/codec"
	"github.com/cryguy/hostbridge/host"
	"github.com/cryguy/hostbridge/marshal"
	"github.com/cryguy/hostbridge/safeerr"
)

func (s *Set) keyOps() []Op {
	return []Op{
		{
			Name:  "keyAddress",
			Usage: "keyAddress(secretKeyHex) -> address",
			Func: marshal.Bind(func(c *host.Call) (codec.Address, error) {
				key, err := marshal.Arg(c, 0, marshal.SecretKeyFrom)
				if err != nil {
					return codec.Address{}, err
				}
				return codec.PubkeyAddress(key.PubKey()), nil
			}, marshal.AddressInto),
		},
		{
			Name:  "describeKey",
			Usage: "describeKey(secretKeyHex) -> {address, publicKey}",
			Func:  describeKey,
		},
		{
			Name:  "signDigest",
			Usage: "signDigest(secretKeyHex, digest) -> 65-byte recoverable signature hex",
			Func: marshal.Bind(func(c *host.Call) (codec.RecoverableSignature, error) {
				key, err := marshal.Arg(c, 0, marshal.SecretKeyFrom)
				if err != nil {
					return codec.RecoverableSignature{}, err
				}
				digest, err := marshal.Arg(c, 1, marshal.Bytes32From)
				if err != nil {
					return codec.RecoverableSignature{}, err
				}
				return codec.Sign(key, digest), nil
			}, marshal.SignatureInto),
		},
		{
			Name:  "recoverAddress",
			Usage: "recoverAddress(digest, signature) -> signer address",
			Func: marshal.Bind(func(c *host.Call) (codec.Address, error) {
				digest, err := marshal.Arg(c, 0, marshal.Bytes32From)
				if err != nil {
					return codec.Address{}, err
				}
				sig, err := marshal.Arg(c, 1, marshal.SignatureFrom)
				if err != nil {
					return codec.Address{}, err
				}
				pub, err := sig.Recover(digest)
				if err != nil {
					return codec.Address{}, safeerr.Errorf("recoverAddress: %w", err)
				}
				return codec.PubkeyAddress(pub), nil
			}, marshal.AddressInto),
		},
	}
}

func describeKey(c *host.Call) (host.Value, error) {
	key, err := marshal.Arg(c, 0, marshal.SecretKeyFrom)
	if err != nil {
		return nil, err
	}
	pub := key.PubKey()
	return marshal.Object(c.Host,
		marshal.Field("address", codec.PubkeyAddress(pub), marshal.AddressInto),
		marshal.Field("publicKey", pub.SerializeUncompressed(), marshal.BytesInto),
	)
}
