/*
Package interop assembles the standard set of interop services available to
contracts.
*/
package interop

import (
	"sync"

	"github.com/nspcc-dev/neo-go/pkg/smartcontract"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/callflag"
	"github.com/nspcc-dev/neoexec/config"
	"github.com/nspcc-dev/neoexec/engine"
	"github.com/nspcc-dev/neoexec/interop/contract"
	"github.com/nspcc-dev/neoexec/interop/crypto"
	"github.com/nspcc-dev/neoexec/interop/interopnames"
	"github.com/nspcc-dev/neoexec/interop/iterator"
	"github.com/nspcc-dev/neoexec/interop/runtime"
	"github.com/nspcc-dev/neoexec/interop/storage"
)

const (
	anyT   = smartcontract.AnyType
	boolT  = smartcontract.BoolType
	intT   = smartcontract.IntegerType
	bytesT = smartcontract.ByteArrayType
	strT   = smartcontract.StringType
	hashT  = smartcontract.Hash160Type
	keyT   = smartcontract.PublicKeyType
	arrayT = smartcontract.ArrayType
	ifaceT = smartcontract.InteropInterfaceType
	voidT  = smartcontract.VoidType
)

func params(ts ...smartcontract.ParamType) []smartcontract.ParamType { return ts }

// Descriptors returns descriptors of all standard services.
func Descriptors() []engine.Descriptor {
	return []engine.Descriptor{
		{Name: interopnames.SystemContractCall, Func: contract.Call, Price: 1 << 15,
			RequiredFlags: callflag.ReadStates | callflag.AllowCall,
			Params: params(hashT, strT, intT, arrayT), Returns: voidT},
		{Name: interopnames.SystemContractCreateMultisigAccount, Func: contract.CreateMultisigAccount,
			Params: params(intT, arrayT), Returns: hashT},
		{Name: interopnames.SystemContractCreateStandardAccount, Func: contract.CreateStandardAccount,
			Params: params(keyT), Returns: hashT},
		{Name: interopnames.SystemContractGetCallFlags, Func: contract.GetCallFlags, Price: 1 << 10,
			Returns: intT},

		{Name: interopnames.SystemCryptoCheckMultisig, Func: crypto.CheckMultisig,
			Params: params(arrayT, arrayT), Returns: boolT},
		{Name: interopnames.SystemCryptoCheckMultisigV2, Func: crypto.CheckMultisigV2, Hardfork: config.HFEchidna,
			Params: params(intT, intT, arrayT, arrayT), Returns: boolT},
		{Name: interopnames.SystemCryptoCheckSig, Func: crypto.CheckSig, Price: 1 << 15,
			Params: params(bytesT, bytesT), Returns: boolT},
		{Name: interopnames.SystemCryptoCheckSigV2, Func: crypto.CheckSigV2, Price: 1 << 15, Hardfork: config.HFEchidna,
			Params: params(intT, intT, bytesT, bytesT), Returns: boolT},

		{Name: interopnames.SystemIteratorNext, Func: iterator.Next, Price: 1 << 15,
			Params: params(ifaceT), Returns: boolT},
		{Name: interopnames.SystemIteratorValue, Func: iterator.Value, Price: 1 << 4,
			Params: params(ifaceT), Returns: anyT},

		{Name: interopnames.SystemRuntimeBurnGas, Func: runtime.BurnGas, Price: 1 << 4,
			Params: params(intT), Returns: voidT},
		{Name: interopnames.SystemRuntimeCheckWitness, Func: runtime.CheckWitness, Price: 1 << 10,
			Params: params(bytesT), Returns: boolT},
		{Name: interopnames.SystemRuntimeCurrentSigners, Func: runtime.CurrentSigners, Price: 1 << 4,
			Returns: arrayT},
		{Name: interopnames.SystemRuntimeGasLeft, Func: runtime.GasLeft, Price: 1 << 4, Returns: intT},
		{Name: interopnames.SystemRuntimeGetAddressVersion, Func: runtime.GetAddressVersion, Price: 1 << 3,
			Returns: intT},
		{Name: interopnames.SystemRuntimeGetCallingScriptHash, Func: runtime.GetCallingScriptHash, Price: 1 << 4,
			Returns: hashT},
		{Name: interopnames.SystemRuntimeGetEntryScriptHash, Func: runtime.GetEntryScriptHash, Price: 1 << 4,
			Returns: hashT},
		{Name: interopnames.SystemRuntimeGetExecutingScriptHash, Func: runtime.GetExecutingScriptHash, Price: 1 << 4,
			Returns: hashT},
		{Name: interopnames.SystemRuntimeGetInvocationCounter, Func: runtime.GetInvocationCounter, Price: 1 << 4,
			Returns: intT},
		{Name: interopnames.SystemRuntimeGetNetwork, Func: runtime.GetNetwork, Price: 1 << 3, Returns: intT},
		{Name: interopnames.SystemRuntimeGetNotifications, Func: runtime.GetNotifications, Price: 1 << 12,
			Params: params(bytesT), Returns: arrayT},
		{Name: interopnames.SystemRuntimeGetRandom, Func: runtime.GetRandom, Returns: intT},
		{Name: interopnames.SystemRuntimeGetScriptContainer, Func: runtime.GetScriptContainer, Price: 1 << 3,
			Returns: anyT},
		{Name: interopnames.SystemRuntimeGetTime, Func: runtime.GetTime, Price: 1 << 3, Returns: intT},
		{Name: interopnames.SystemRuntimeGetTrigger, Func: runtime.GetTrigger, Price: 1 << 3, Returns: intT},
		{Name: interopnames.SystemRuntimeLoadScript, Func: runtime.LoadScript, Price: 1 << 15,
			RequiredFlags: callflag.AllowCall, Params: params(bytesT, intT, arrayT), Returns: voidT},
		{Name: interopnames.SystemRuntimeLog, Func: runtime.Log, Price: 1 << 15,
			RequiredFlags: callflag.AllowNotify, Params: params(bytesT), Returns: voidT},
		{Name: interopnames.SystemRuntimeNotify, Func: runtime.Notify, Price: 1 << 15,
			RequiredFlags: callflag.AllowNotify, Params: params(bytesT, arrayT), Returns: voidT},
		{Name: interopnames.SystemRuntimePlatform, Func: runtime.GetPlatform, Price: 1 << 3, Returns: strT},

		{Name: interopnames.SystemStorageAsReadOnly, Func: storage.AsReadOnly, Price: 1 << 4,
			RequiredFlags: callflag.ReadStates, Params: params(ifaceT), Returns: ifaceT},
		{Name: interopnames.SystemStorageDelete, Func: storage.Delete, Price: 1 << 15,
			RequiredFlags: callflag.WriteStates, Params: params(ifaceT, bytesT), Returns: voidT},
		{Name: interopnames.SystemStorageFind, Func: storage.Find, Price: 1 << 15,
			RequiredFlags: callflag.ReadStates, Params: params(ifaceT, bytesT, intT), Returns: ifaceT},
		{Name: interopnames.SystemStorageGet, Func: storage.Get, Price: 1 << 15,
			RequiredFlags: callflag.ReadStates, Params: params(ifaceT, bytesT), Returns: bytesT},
		{Name: interopnames.SystemStorageGetContext, Func: storage.GetContext, Price: 1 << 4,
			RequiredFlags: callflag.ReadStates, Returns: ifaceT},
		{Name: interopnames.SystemStorageGetReadOnlyContext, Func: storage.GetReadOnlyContext, Price: 1 << 4,
			RequiredFlags: callflag.ReadStates, Returns: ifaceT},
		{Name: interopnames.SystemStoragePut, Func: storage.Put, Price: 1 << 15,
			RequiredFlags: callflag.WriteStates, Params: params(ifaceT, bytesT, bytesT), Returns: voidT},
		{Name: interopnames.SystemStorageLocalDelete, Func: storage.LocalDelete, Price: 1 << 15, Hardfork: config.HFEchidna,
			RequiredFlags: callflag.WriteStates, Params: params(bytesT), Returns: voidT},
		{Name: interopnames.SystemStorageLocalFind, Func: storage.LocalFind, Price: 1 << 15, Hardfork: config.HFEchidna,
			RequiredFlags: callflag.ReadStates, Params: params(bytesT, intT), Returns: ifaceT},
		{Name: interopnames.SystemStorageLocalGet, Func: storage.LocalGet, Price: 1 << 15, Hardfork: config.HFEchidna,
			RequiredFlags: callflag.ReadStates, Params: params(bytesT), Returns: bytesT},
		{Name: interopnames.SystemStorageLocalPut, Func: storage.LocalPut, Price: 1 << 15, Hardfork: config.HFEchidna,
			RequiredFlags: callflag.WriteStates, Params: params(bytesT, bytesT), Returns: voidT},
	}
}

var (
	defaultOnce     sync.Once
	defaultRegistry *engine.Registry
)

// Default returns the registry of standard services. It's built once.
func Default() *engine.Registry {
	defaultOnce.Do(func() {
		r, err := engine.NewRegistry(Descriptors()...)
		if err != nil {
			panic(err)
		}
		defaultRegistry = r
	})
	return defaultRegistry
}
