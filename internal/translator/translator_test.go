package translator

import (
	"net"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfabric/pipeliner/internal/models"
)

const testAppID = "org.openfabric.test"

func permitObjective(conditions ...models.Criterion) *models.FilteringObjective {
	return &models.FilteringObjective{
		AppID:      testAppID,
		Op:         models.OpAdd,
		Type:       models.FilterPermit,
		Key:        models.InPortCriterion(4),
		Conditions: conditions,
	}
}

func TestFilter_EthDstCondition(t *testing.T) {
	mac, err := net.ParseMAC("00:11:22:33:44:55")
	require.NoError(t, err)

	ops, err := Filter(permitObjective(models.EthDstCriterion(mac)))
	require.NoError(t, err)
	require.Len(t, ops, 1)

	rule := ops[0].Rule
	assert.Equal(t, models.TableFirst, rule.Table)
	assert.Equal(t, models.TableVlanMPLS, rule.Treatment.Transition)
	assert.Equal(t, models.PriorityController, rule.Priority)
	assert.True(t, rule.Permanent)
	assert.False(t, ops[0].Remove)
}

func TestFilter_VlanCondition(t *testing.T) {
	ops, err := Filter(permitObjective(models.VlanCriterion(100)))
	require.NoError(t, err)
	require.Len(t, ops, 1)

	rule := ops[0].Rule
	assert.Equal(t, models.TableVlan, rule.Table)
	assert.Equal(t, models.TableEther, rule.Treatment.Transition)
	assert.True(t, rule.Treatment.PopVlan)

	// The vlan admission entry is scoped to the objective's ingress port.
	inPort, ok := rule.Selector.Criterion(models.CriterionInPort)
	require.True(t, ok)
	assert.Equal(t, uint32(4), inPort.Port)
}

func TestFilter_IPv4DstCondition(t *testing.T) {
	prefix := netip.MustParsePrefix("10.0.0.1/32")
	ops, err := Filter(permitObjective(models.IPv4DstCriterion(prefix)))
	require.NoError(t, err)
	require.Len(t, ops, 1)

	rule := ops[0].Rule
	assert.Equal(t, models.TableIP, rule.Table)
	assert.Equal(t, models.TableACL, rule.Treatment.Transition)
	assert.Equal(t, models.PriorityHighest, rule.Priority, "host route admission uses the hardware maximum priority")

	ethType, ok := rule.Selector.Criterion(models.CriterionEthType)
	require.True(t, ok)
	assert.Equal(t, models.EthTypeIPv4, ethType.EthType)
}

func TestFilter_MalformedConditionKeepsSiblings(t *testing.T) {
	// A valid vlan condition next to an ipv4 condition whose prefix never
	// parsed: the vlan entry must still come out, together with the
	// overall failure signal.
	malformedIP := models.Criterion{Type: models.CriterionIPv4Dst}
	ops, err := Filter(permitObjective(models.VlanCriterion(42), malformedIP))

	require.ErrorIs(t, err, models.ErrUnsupportedCondition)
	require.Len(t, ops, 1)
	assert.Equal(t, models.TableVlan, ops[0].Rule.Table)
}

func TestFilter_UnrecognizedConditionType(t *testing.T) {
	ops, err := Filter(permitObjective(models.Criterion{Type: models.CriterionUnknown}))
	require.ErrorIs(t, err, models.ErrUnsupportedCondition)
	assert.Empty(t, ops)
}

func TestFilter_MissingInPortKey(t *testing.T) {
	obj := permitObjective(models.VlanCriterion(42))
	obj.Key = models.Criterion{Type: models.CriterionEthType}

	ops, err := Filter(obj)
	require.ErrorIs(t, err, models.ErrUnsupportedCondition)
	assert.Empty(t, ops, "a bad key emits no descriptors at all")
}

func TestFilter_RemoveOperation(t *testing.T) {
	obj := permitObjective(models.VlanCriterion(7))
	obj.Op = models.OpRemove

	ops, err := Filter(obj)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.True(t, ops[0].Remove)
}

func TestForward_IPv4Destination(t *testing.T) {
	key := models.GroupKeyForNext("dev1", 5)
	obj := &models.ForwardingObjective{
		AppID: testAppID,
		Flag:  models.ForwardSpecific,
		Selector: models.TrafficSelector{
			models.EthTypeCriterion(models.EthTypeIPv4),
			models.IPv4DstCriterion(netip.MustParsePrefix("192.168.10.0/24")),
		},
		Priority:  4000,
		Permanent: true,
	}

	ops, err := Forward(obj, key)
	require.NoError(t, err)
	require.Len(t, ops, 1)

	rule := ops[0].Rule
	assert.Equal(t, models.TableIP, rule.Table)
	assert.Equal(t, key, rule.Treatment.Group)
	assert.Equal(t, uint32(4000), rule.Priority)
}

func TestForward_RejectsNonIPv4Match(t *testing.T) {
	obj := &models.ForwardingObjective{
		AppID: testAppID,
		Flag:  models.ForwardSpecific,
		Selector: models.TrafficSelector{
			models.EthTypeCriterion(models.EthTypeARP),
		},
	}
	_, err := Forward(obj, "key")
	assert.ErrorIs(t, err, models.ErrUnsupportedMatch)
}

func TestForward_RejectsMissingDestination(t *testing.T) {
	obj := &models.ForwardingObjective{
		AppID: testAppID,
		Flag:  models.ForwardSpecific,
		Selector: models.TrafficSelector{
			models.EthTypeCriterion(models.EthTypeIPv4),
		},
	}
	_, err := Forward(obj, "key")
	assert.ErrorIs(t, err, models.ErrUnsupportedMatch)
}

func TestForward_RejectsVersatile(t *testing.T) {
	obj := &models.ForwardingObjective{
		AppID: testAppID,
		Flag:  models.ForwardVersatile,
	}
	_, err := Forward(obj, "key")
	assert.ErrorIs(t, err, models.ErrUnsupportedObjective)
}

func TestDefaultProgram_Stages(t *testing.T) {
	program := DefaultProgram(testAppID)

	stages := make([]models.TableStage, 0, len(program))
	total := 0
	for _, stage := range program {
		stages = append(stages, stage.Stage)
		total += len(stage.Rules)
		for _, rule := range stage.Rules {
			assert.Equal(t, stage.Stage, rule.Table)
			assert.Equal(t, testAppID, rule.AppID)
			assert.True(t, rule.Permanent)
		}
	}
	assert.Equal(t, []models.TableStage{
		models.TableFirst,
		models.TableVlanMPLS,
		models.TableVlan,
		models.TableEther,
		models.TableCos,
		models.TableIP,
		models.TableLocal,
	}, stages)
	assert.Equal(t, 10, total)
}

func TestDefaultProgram_Idempotent(t *testing.T) {
	assert.Equal(t, DefaultProgram(testAppID), DefaultProgram(testAppID))
}

func TestDefaultProgram_EtherStageWiring(t *testing.T) {
	program := DefaultProgram(testAppID)

	var ether StageProgram
	for _, stage := range program {
		if stage.Stage == models.TableEther {
			ether = stage
		}
	}
	require.Len(t, ether.Rules, 3)

	arp := ether.Rules[0]
	ethType, ok := arp.Selector.Criterion(models.CriterionEthType)
	require.True(t, ok)
	assert.Equal(t, models.EthTypeARP, ethType.EthType)
	assert.True(t, arp.Treatment.Punt, "ARP is punted to the controller")

	ipv4 := ether.Rules[1]
	assert.Equal(t, models.TableCos, ipv4.Treatment.Transition)

	drop := ether.Rules[2]
	assert.True(t, drop.Treatment.Drop)
	assert.Equal(t, models.PriorityDrop, drop.Priority)
}
